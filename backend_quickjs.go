package jshandler

import "github.com/cryguy/jshandler/internal/quickjs"

func init() { registerBackend(quickjs.Backend{}) }
