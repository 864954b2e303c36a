package jshandler

import "github.com/cryguy/jshandler/internal/gojaengine"

func init() { registerBackend(gojaengine.Backend{}) }
