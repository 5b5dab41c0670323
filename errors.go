package smartx

import "errors"

// ErrNotRegistered reports an active object the Runtime never registered.
// Runtime's Unsubscribe and UnsubscribeAll do not check registration and
// never return it.
var ErrNotRegistered = errors.New("smartx: active object is not registered with this runtime")

// ErrAlreadyRegistered is returned by Register when called twice for the
// same active object name.
var ErrAlreadyRegistered = errors.New("smartx: active object already registered")
