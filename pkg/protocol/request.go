// Package protocol implements the line-oriented text protocol spoken between
// broker clients and the broker: request parsing and the serialization of
// responses and unsolicited server pushes. One command or push per line.
package protocol

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Command keywords. Matching is case-sensitive.
const (
	CommandPublish     = "PUBLISH"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
)

// RequestError is the reason a request line could not be parsed. Its value is
// the code sent back to the client after the '-' marker.
type RequestError string

const (
	ErrMissingCommandName RequestError = "MISSING_COMMAND_NAME"
	ErrUnknownCommandName RequestError = "UNKNOWN_COMMAND_NAME"
	ErrInvalidArguments   RequestError = "INVALID_ARGUMENTS"
)

func (e RequestError) Error() string {
	return "protocol: " + string(e)
}

// Code returns the wire representation of the error.
func (e RequestError) Code() string {
	return string(e)
}

// Request is one parsed client command: Publish, Subscribe or Unsubscribe.
type Request interface {
	isRequest()
}

// Publish asks the broker to deliver Content to every subscriber of Topic.
type Publish struct {
	Topic   string
	Content string
}

// Subscribe attaches the issuing connection to each of Topics.
type Subscribe struct {
	Topics []string
}

// Unsubscribe detaches the issuing connection from each of Topics.
type Unsubscribe struct {
	Topics []string
}

func (Publish) isRequest()     {}
func (Subscribe) isRequest()   {}
func (Unsubscribe) isRequest() {}

// Parse turns a request line (without its line delimiter) into a Request.
// The returned error is always a RequestError.
//
// Leading whitespace before the keyword is ignored. PUBLISH content is
// everything after the single separator that follows the topic, preserved
// verbatim; a missing content yields the empty string.
func Parse(line string) (Request, error) {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return nil, ErrMissingCommandName
	}

	name, args := fields[0], fields[1:]
	switch name {
	case CommandPublish:
		return parsePublish(args, trimmed[len(name):])
	case CommandSubscribe:
		if len(args) == 0 {
			return nil, ErrInvalidArguments
		}
		return Subscribe{Topics: args}, nil
	case CommandUnsubscribe:
		if len(args) == 0 {
			return nil, ErrInvalidArguments
		}
		return Unsubscribe{Topics: args}, nil
	default:
		return nil, ErrUnknownCommandName
	}
}

// parsePublish extracts topic and content from rest, the line remainder
// right after the keyword.
func parsePublish(args []string, rest string) (Request, error) {
	if len(args) == 0 {
		return nil, ErrInvalidArguments
	}
	topic := args[0]

	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	rest = rest[len(topic):]
	if rest == "" {
		return Publish{Topic: topic}, nil
	}
	// rest starts with the separator rune; drop exactly that one.
	_, size := utf8.DecodeRuneInString(rest)
	return Publish{Topic: topic, Content: rest[size:]}, nil
}

// FormatRequest serializes req to its line form, without the line delimiter.
func FormatRequest(req Request) string {
	switch req := req.(type) {
	case Publish:
		return CommandPublish + " " + req.Topic + " " + req.Content
	case Subscribe:
		return CommandSubscribe + " " + strings.Join(req.Topics, " ")
	case Unsubscribe:
		return CommandUnsubscribe + " " + strings.Join(req.Topics, " ")
	default:
		panic("protocol: unknown request type")
	}
}
