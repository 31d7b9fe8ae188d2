package groupconfig

import "strings"

// FindJob locates jobID across every origin in g, scanning in declaration
// order. Per spec.md §4.8 AUTH_CHECK, callers that need to locate an auth
// job for a session name scan the current origin first, then the full set.
func (g *Group) FindJob(jobID string) (*Origin, *Job, bool) {
	for i := range g.Origins {
		origin := &g.Origins[i]
		for j := range origin.Jobs {
			if origin.Jobs[j].ID == jobID {
				return origin, &origin.Jobs[j], true
			}
		}
	}
	return nil, nil, false
}

// FindAuthJobBySessionName scans preferred first, then every origin in all,
// for an auth job whose SessionName (or its origin-derived default) equals
// sessionName.
func FindAuthJobBySessionName(preferred *Origin, all []Origin, sessionName string) (*Origin, *Job, bool) {
	search := make([]*Origin, 0, len(all)+1)
	if preferred != nil {
		search = append(search, preferred)
	}
	for i := range all {
		if preferred != nil && all[i].Name == preferred.Name {
			continue
		}
		search = append(search, &all[i])
	}

	for _, origin := range search {
		for j := range origin.Jobs {
			job := &origin.Jobs[j]
			if job.Type != JobTypeAuth {
				continue
			}
			name := job.SessionName
			if name == "" {
				name = "SESSION_" + strings.ToUpper(origin.Name) + "_TOKEN"
			}
			if name == sessionName {
				return origin, job, true
			}
		}
	}
	return nil, nil, false
}

// NodeIDs returns the ids of o.Jobs in declaration order.
func (o *Origin) NodeIDs() []string {
	ids := make([]string, len(o.Jobs))
	for i, j := range o.Jobs {
		ids[i] = j.ID
	}
	return ids
}
