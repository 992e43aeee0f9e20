package control

import (
	"entropyd/internal/jsonvalue"
)

// Request is a parsed control-protocol request: either a bare command name
// or a [command, token, ...args] array.
type Request struct {
	Command string
	Token   int64
	Args    []jsonvalue.Value
}

// ErrBadRequest wraps a malformed request payload; the caller replies with
// the BadRequest envelope rather than closing the connection.
type ErrBadRequest struct {
	Reason string
}

func (e *ErrBadRequest) Error() string { return "control: bad request: " + e.Reason }

// ParseRequest interprets a decoded JSON value as a control request.
func ParseRequest(v jsonvalue.Value) (Request, error) {
	switch v.Kind() {
	case jsonvalue.KindString:
		return Request{Command: v.AsString()}, nil
	case jsonvalue.KindArray:
		arr := v.AsArray()
		if len(arr) < 2 {
			return Request{}, &ErrBadRequest{Reason: "array request needs at least [command, token]"}
		}
		if arr[0].Kind() != jsonvalue.KindString {
			return Request{}, &ErrBadRequest{Reason: "command must be a string"}
		}
		if arr[1].Kind() != jsonvalue.KindNumber {
			return Request{}, &ErrBadRequest{Reason: "token must be a number"}
		}
		return Request{
			Command: arr[0].AsString(),
			Token:   arr[1].AsInt(),
			Args:    arr[2:],
		}, nil
	default:
		return Request{}, &ErrBadRequest{Reason: "request must be a string or array"}
	}
}

// Response builds the [command, token, payload] reply envelope.
func Response(command string, token int64, payload jsonvalue.Value) jsonvalue.Value {
	return jsonvalue.Array(jsonvalue.String(command), jsonvalue.Int(token), payload)
}

// UnknownRequest builds the reply for a recognised-shape but unhandled
// command name.
func UnknownRequest(token int64, original jsonvalue.Value) jsonvalue.Value {
	return jsonvalue.Array(jsonvalue.String("UnknownRequest"), jsonvalue.Int(token), original)
}

// BadRequest builds the reply for a request that failed to parse at all.
func BadRequest(errMsg string, rawRequest string) jsonvalue.Value {
	obj := jsonvalue.NewObject()
	obj.Set("Error", jsonvalue.String(errMsg))
	obj.Set("Request", jsonvalue.String(rawRequest))
	return jsonvalue.Array(jsonvalue.String("BadRequest"), jsonvalue.Int(0), jsonvalue.Obj(obj))
}

func argString(args []jsonvalue.Value, i int) (string, bool) {
	if i >= len(args) || args[i].Kind() != jsonvalue.KindString {
		return "", false
	}
	return args[i].AsString(), true
}

func argInt(args []jsonvalue.Value, i int) (int64, bool) {
	if i >= len(args) || args[i].Kind() != jsonvalue.KindNumber {
		return 0, false
	}
	return args[i].AsInt(), true
}
