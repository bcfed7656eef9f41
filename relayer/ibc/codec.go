package ibc

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/gogo/protobuf/proto"
)

// State written under ICS-24 paths must encode deterministically so that a
// verifier re-encoding an expected value gets the exact bytes that were
// committed. Protobuf messages (connection and channel ends) use their
// protobuf encoding; everything else uses canonical CBOR.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	opts.NilContainers = cbor.NilContainerAsEmpty

	var err error
	if encMode, err = opts.EncMode(); err != nil {
		panic(fmt.Errorf("failed to build cbor encoder: %w", err))
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(fmt.Errorf("failed to build cbor decoder: %w", err))
	}
}

// Marshal encodes v in the canonical form used for commitments.
func Marshal(v any) ([]byte, error) {
	if msg, ok := asProto(v); ok {
		return proto.Marshal(msg)
	}
	return encMode.Marshal(v)
}

// MustMarshal is Marshal for values that are known to be encodable.
func MustMarshal(v any) []byte {
	bz, err := Marshal(v)
	if err != nil {
		panic(fmt.Errorf("failed to marshal %T: %w", v, err))
	}
	return bz
}

func Unmarshal(bz []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(bz, msg)
	}
	return decMode.Unmarshal(bz, v)
}

// asProto returns v as a protobuf message, taking the address of a copy for
// message values.
func asProto(v any) (proto.Message, bool) {
	if msg, ok := v.(proto.Message); ok {
		return msg, true
	}
	if v == nil {
		return nil, false
	}
	ptr := reflect.New(reflect.TypeOf(v))
	ptr.Elem().Set(reflect.ValueOf(v))
	msg, ok := ptr.Interface().(proto.Message)
	return msg, ok
}
