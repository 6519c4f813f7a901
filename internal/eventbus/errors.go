package eventbus

import "errors"

// ErrClosed возвращается при публикации в закрытую шину
var ErrClosed = errors.New("eventbus closed")
