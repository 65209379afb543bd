package command

import (
	"context"
	"fmt"

	"github.com/KevinKickass/OpenVNA/internal/types"
)

// Session is the request/response channel descriptors are dispatched over.
type Session interface {
	Write(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
}

// Get queries a property on channel cnum and decodes the reply.
func Get(ctx context.Context, s Session, d *Descriptor, cnum int) (any, error) {
	if !d.Readable() {
		return nil, &types.ConfigurationError{Op: "get " + d.Name, Reason: "property is write-only"}
	}

	cmd := ResolveQuery(d.Query, cnum)
	reply, err := s.Query(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", d.Name, err)
	}

	v, err := d.Validator.Decode(reply)
	if err != nil {
		return nil, &types.ProtocolError{Command: cmd, Reply: reply, Err: err}
	}
	return v, nil
}

// Set encodes v and writes it to channel cnum. Invalid values are
// rejected before anything is sent.
func Set(ctx context.Context, s Session, d *Descriptor, cnum int, v any) error {
	if !d.Writable() {
		return &types.ConfigurationError{Op: "set " + d.Name, Reason: "property is read-only"}
	}

	token, err := d.Validator.Encode(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", d.Name, err)
	}

	if err := s.Write(ctx, Resolve(d.Write, cnum, token)); err != nil {
		return fmt.Errorf("set %s: %w", d.Name, err)
	}
	return nil
}
