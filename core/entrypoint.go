package core

import (
	"reflect"

	"github.com/encodeous/kdtm/state"
)

// Start initializes the modules of one node. Their tasks run once the
// node's scheduler starts dispatching.
func Start(s *state.State, modules ...state.KdModule) error {
	s.Log.Debug("init modules")
	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	s.Log.Debug("init modules complete")
	return nil
}

// Stop cleans up every module of the node.
func Stop(s *state.State) {
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	clear(s.Modules)
	s.Log.Debug("stopped")
}

// Get returns the module of type T registered on s.
func Get[T state.KdModule](s *state.State) (T, bool) {
	t, ok := s.Modules[reflect.TypeFor[T]().String()].(T)
	return t, ok
}

// GetNode returns the protocol module of s, or nil if it was not started.
func GetNode(s *state.State) *Node {
	n, _ := Get[*Node](s)
	return n
}
