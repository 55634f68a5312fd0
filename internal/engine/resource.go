package engine

import "io"

// resourceManager closes managed resources in reverse (LIFO) order, the
// same cleanup discipline the reference engine applies to its pager and
// file handles.
type resourceManager struct {
	resources []io.Closer
}

func newResourceManager() *resourceManager {
	return &resourceManager{}
}

func (rm *resourceManager) add(r io.Closer) {
	rm.resources = append(rm.resources, r)
}

func (rm *resourceManager) Close() error {
	var lastErr error
	for i := len(rm.resources) - 1; i >= 0; i-- {
		if err := rm.resources[i].Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
