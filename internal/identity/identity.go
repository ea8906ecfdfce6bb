// Package identity builds and parses federated identifiers.
//
// Grammar: <authority>/<kind>/<localPart>. The last two segments are always the
// kind tag and the local part, so a post minted under its author
// ("srv1/user/42/post/1717000000000") parses with the author id as authority.
// Users and channels are minted under a bare server name.
package identity

import (
	"fmt"
	"strings"

	"github.com/kmsv-2726/federated-socmed/pkg/errcode"
)

// ErrMalformedIdentifier 标识符不满足三段式语法
var ErrMalformedIdentifier = errcode.New(errcode.Validation, "MALFORMED_IDENTIFIER", "malformed federated identifier")

// Kind 标识符类型标签
type Kind string

const (
	KindUser    Kind = "user"
	KindPost    Kind = "post"
	KindChannel Kind = "channel"
)

// Valid reports whether k is one of the known kind tags.
func (k Kind) Valid() bool {
	switch k {
	case KindUser, KindPost, KindChannel:
		return true
	}
	return false
}

// ID is a parsed federated identifier.
type ID struct {
	Authority string
	Kind      Kind
	LocalPart string
}

// New assembles an ID without validating it; use Parse(id.String()) to check.
func New(authority string, kind Kind, localPart string) ID {
	return ID{Authority: authority, Kind: kind, LocalPart: localPart}
}

// UserID is shorthand for a user identifier on server.
func UserID(server, localID string) ID { return New(server, KindUser, localID) }

// ChannelID is the synthetic identifier a channel is followed under.
func ChannelID(server, name string) ID { return New(server, KindChannel, name) }

func (id ID) String() string {
	return id.Authority + "/" + string(id.Kind) + "/" + id.LocalPart
}

// Server returns the origin server: the first segment of the authority.
func (id ID) Server() string {
	if i := strings.IndexByte(id.Authority, '/'); i >= 0 {
		return id.Authority[:i]
	}
	return id.Authority
}

// Parse splits s into authority, kind and local part.
func Parse(s string) (ID, error) {
	segs := strings.Split(s, "/")
	if len(segs) < 3 {
		return ID{}, fmt.Errorf("%w: %q needs <authority>/<kind>/<localPart>", ErrMalformedIdentifier, s)
	}
	for _, seg := range segs {
		if seg == "" || strings.TrimSpace(seg) != seg {
			return ID{}, fmt.Errorf("%w: %q has an empty or padded segment", ErrMalformedIdentifier, s)
		}
	}

	n := len(segs)
	id := ID{
		Authority: strings.Join(segs[:n-2], "/"),
		Kind:      Kind(segs[n-2]),
		LocalPart: segs[n-1],
	}
	if !id.Kind.Valid() {
		return ID{}, fmt.Errorf("%w: unknown kind %q in %q", ErrMalformedIdentifier, id.Kind, s)
	}

	switch id.Kind {
	case KindPost:
		// 帖子的 authority 必须是一个用户标识
		author, err := Parse(id.Authority)
		if err != nil || author.Kind != KindUser {
			return ID{}, fmt.Errorf("%w: post %q is not minted under a user", ErrMalformedIdentifier, s)
		}
	default:
		if n != 3 {
			return ID{}, fmt.Errorf("%w: %s identifier %q must have exactly three segments", ErrMalformedIdentifier, id.Kind, s)
		}
	}
	return id, nil
}

// ParseKind parses s and additionally requires the given kind.
func ParseKind(s string, want Kind) (ID, error) {
	id, err := Parse(s)
	if err != nil {
		return ID{}, err
	}
	if id.Kind != want {
		return ID{}, fmt.Errorf("%w: %q is a %s, want %s", ErrMalformedIdentifier, s, id.Kind, want)
	}
	return id, nil
}
