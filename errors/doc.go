// Package errors classifies failures into three classes: Transient (retry),
// Invalid (bad request or input, do not retry) and Fatal (stop).
//
// Hub operations and the client agent wrap their failures with context:
//
//	if err := json.Unmarshal(env.Payload, &p); err != nil {
//	    return errors.WrapInvalid(err, "hub", "PinToggled", "decode payload")
//	}
//
// KindName turns any error into the short kind used in audit labels:
//
//	label := "InvokeFail:" + method + ":" + errors.KindName(err)
//
// The package shadows the standard library name on purpose so that callers
// import one errors package; errors.Is and errors.As from the standard
// library work on every error produced here.
package errors
