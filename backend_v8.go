//go:build v8

package jshandler

import "github.com/cryguy/jshandler/internal/v8engine"

func init() { registerBackend(v8engine.Backend{}) }
