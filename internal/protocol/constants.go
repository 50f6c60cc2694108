package protocol

const (
	// ID is the libp2p stream protocol used for file exchange.
	ID = "/fileshare/file-exchange/1.0.0"

	MaxMessageSize = 16 * 1024 * 1024
)

type MessageType uint16

const (
	MsgError   MessageType = 0x00FF
	MsgFileReq MessageType = 0x0010
	MsgFileRes MessageType = 0x0011
)

func (t MessageType) String() string {
	switch t {
	case MsgError:
		return "ERROR"
	case MsgFileReq:
		return "FILE_REQ"
	case MsgFileRes:
		return "FILE_RES"
	default:
		return "UNKNOWN"
	}
}

type ErrorCode uint16

const (
	ErrFileNotFound ErrorCode = 0x0002
	ErrInternal     ErrorCode = 0x00FF
	ErrInvalidMsg   ErrorCode = 0x0001
	ErrUnknown      ErrorCode = 0x0000
)

func (e ErrorCode) String() string {
	switch e {
	case ErrFileNotFound:
		return "FILE_NOT_FOUND"
	case ErrInternal:
		return "INTERNAL_ERROR"
	case ErrInvalidMsg:
		return "INVALID_MESSAGE"
	default:
		return "UNKNOWN"
	}
}
