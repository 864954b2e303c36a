package jshandler

import (
	"errors"
	"fmt"
	"net/http"
)

// Outcome is the result of one script run: either a completion value or a
// raised exception, never both.
type Outcome struct {
	Value string
	Err   *ScriptError
}

// Raised reports whether the script threw.
func (o Outcome) Raised() bool { return o.Err != nil }

// Response is what the host writes back for a request.
type Response struct {
	Status     int
	StatusText string
	Body       string
}

// errorBody is sent for every failed request. Script error text is logged,
// never sent to the client.
const errorBody = "Internal Server Error"

func errorResponse() Response {
	return Response{
		Status:     http.StatusInternalServerError,
		StatusText: http.StatusText(http.StatusInternalServerError),
		Body:       errorBody,
	}
}

func okResponse(body string) Response {
	return Response{Status: http.StatusOK, StatusText: "OK", Body: body}
}

// Invoke runs the compiled unit once, to completion, with this bound to the
// global object. It returns ErrBrokenContext when c is nil or not Ready.
// The engine's exception state is clear when Invoke returns.
func (c *RuntimeContext) Invoke() (Outcome, error) {
	if c == nil {
		return Outcome{}, ErrBrokenContext
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.unit == nil {
		return Outcome{}, fmt.Errorf("%w (state %s)", ErrBrokenContext, c.state)
	}
	return c.run(), nil
}

// run classifies the invocation result right after the call. A panic in the
// backend is reported as a raised exception so it cannot take the worker
// down.
func (c *RuntimeContext) run() (out Outcome) {
	label := c.unit.Label()
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: &ScriptError{Label: label, Message: fmt.Sprintf("engine panic: %v", r)}}
		}
	}()

	value, err := c.rt.Invoke(c.unit)
	if err != nil {
		var se *ScriptError
		if !errors.As(err, &se) {
			se = &ScriptError{Label: label, Message: err.Error()}
		}
		return Outcome{Err: se}
	}
	return Outcome{Value: value}
}
