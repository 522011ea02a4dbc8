package protocol

import "strings"

const (
	markerOK      = "+"
	markerError   = "-"
	markerMessage = ">"

	lineHi  = "!hi"
	lineBye = "!bye"
)

// Response is the single reply sent for every request line.
// The zero value is a success.
type Response struct {
	Err RequestError
}

// OK is the uniform success response for all request kinds.
var OK = Response{}

// Failure builds the response reporting err to the client.
func Failure(err RequestError) Response {
	return Response{Err: err}
}

// String serializes the response: "+" or "-<CODE>".
func (r Response) String() string {
	if r.Err == "" {
		return markerOK
	}
	return markerError + r.Err.Code()
}

// ParseResponse recognizes a response line. It reports false for anything
// that is not a response, such as a push.
func ParseResponse(line string) (Response, bool) {
	switch {
	case line == markerOK:
		return OK, true
	case strings.HasPrefix(line, markerError) && len(line) > len(markerError):
		return Failure(RequestError(line[len(markerError):])), true
	default:
		return Response{}, false
	}
}

// Push is an unsolicited server line: Hi, Bye or Message.
type Push interface {
	isPush()
}

// Hi greets a freshly accepted connection.
type Hi struct{}

// Bye is sent right before the server closes the connection.
type Bye struct{}

// Message carries a published message to a subscriber.
type Message struct {
	Topic   string
	Content string
}

func (Hi) isPush()      {}
func (Bye) isPush()     {}
func (Message) isPush() {}

// FormatPush serializes p to its line form.
func FormatPush(p Push) string {
	switch p := p.(type) {
	case Hi:
		return lineHi
	case Bye:
		return lineBye
	case Message:
		return markerMessage + p.Topic + " " + p.Content
	default:
		panic("protocol: unknown push type")
	}
}

// ParsePush recognizes a push line. Topics never contain whitespace, so the
// first space after the marker ends the topic.
func ParsePush(line string) (Push, bool) {
	switch {
	case line == lineHi:
		return Hi{}, true
	case line == lineBye:
		return Bye{}, true
	case strings.HasPrefix(line, markerMessage):
		topic, content, _ := strings.Cut(line[len(markerMessage):], " ")
		if topic == "" {
			return nil, false
		}
		return Message{Topic: topic, Content: content}, true
	default:
		return nil, false
	}
}
