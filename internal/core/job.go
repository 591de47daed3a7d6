package core

// Job is one entry of the workflow's jobs collection.
type Job struct {
	Name string
	Node Node
}

// Jobs returns the jobs of doc in document order. A document without a jobs
// mapping has no jobs.
func Jobs(doc *Document) []Job {
	node, ok := doc.Get("jobs")
	if !ok {
		return nil
	}
	m, ok := node.AsMapping()
	if !ok {
		return nil
	}
	jobs := make([]Job, 0, m.Len())
	for _, e := range m.Entries() {
		if e.Value.Kind() != KindMapping {
			continue
		}
		jobs = append(jobs, Job{Name: e.Key, Node: e.Value})
	}
	return jobs
}

func (j Job) path(rest ...string) []string {
	return append([]string{"jobs", j.Name}, rest...)
}
