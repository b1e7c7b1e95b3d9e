package modules

import (
	"sort"
)

// ModuleStatus describes the lifecycle state of a module.
type ModuleStatus struct {
	Name         string
	Prepped      bool
	Started      bool
	Stopped      bool
	Workers      int32
	Dependencies []string `json:",omitempty" yaml:",omitempty"`
}

// Status returns the status of all registered modules, sorted by name.
func Status() []*ModuleStatus {
	modulesLock.RLock()
	defer modulesLock.RUnlock()

	status := make([]*ModuleStatus, 0, len(modules))
	for _, m := range modules {
		status = append(status, &ModuleStatus{
			Name:         m.Name,
			Prepped:      m.Prepped.IsSet(),
			Started:      m.Started.IsSet(),
			Stopped:      m.Stopped.IsSet(),
			Workers:      m.WorkerCount(),
			Dependencies: m.depNames,
		})
	}

	sort.Slice(status, func(i, j int) bool {
		return status[i].Name < status[j].Name
	})
	return status
}
