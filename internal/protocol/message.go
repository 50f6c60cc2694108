package protocol

import "fmt"

type Message interface {
	Type() MessageType
}

// FileReq asks a provider for the content stored under Name.
type FileReq struct {
	Name string
}

func (FileReq) Type() MessageType { return MsgFileReq }

type FileRes struct {
	Content string
}

func (FileRes) Type() MessageType { return MsgFileRes }

// Error is sent in place of a FileRes. Received Error frames are surfaced to
// callers as a Go error.
type Error struct {
	Code    ErrorCode
	Message string
}

func (Error) Type() MessageType { return MsgError }

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error: %s", e.Code)
	}
	return fmt.Sprintf("remote error: %s: %s", e.Code, e.Message)
}
