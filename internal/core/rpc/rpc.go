// Package rpc defines the linewarden.v1.Validator gRPC service. Messages are
// plain Go structs carried by a JSON codec registered under the "json"
// content subtype.
package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/solatis/linewarden/internal/types"
	"github.com/solatis/linewarden/internal/verdict"
)

const (
	// CodecName is the content subtype used on the wire (application/grpc+json).
	CodecName = "json"

	ServiceName    = "linewarden.v1.Validator"
	ValidateMethod = "/linewarden.v1.Validator/Validate"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec encodes plain structs with encoding/json. Protobuf messages, such
// as the health service's, go through protojson so the codec can serve any
// registered service.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }

// ValidateRequest asks for the verdict of one subscriber. Order is the
// classified order that selected it, when there is one.
type ValidateRequest struct {
	MSISDN string                 `json:"msisdn"`
	Order  *types.ClassifiedOrder `json:"order,omitempty"`
}

// ValidatorServer is the server API for the Validator service.
type ValidatorServer interface {
	Validate(ctx context.Context, req *ValidateRequest) (*verdict.Result, error)
}

// RegisterValidatorServer registers srv on s.
func RegisterValidatorServer(s grpc.ServiceRegistrar, srv ValidatorServer) {
	s.RegisterService(&validatorServiceDesc, srv)
}

var validatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ValidatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: validateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linewarden/v1/validator",
}

func validateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ValidatorServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ValidatorServer).Validate(ctx, req.(*ValidateRequest))
	}
	return interceptor(ctx, in, info, handler)
}
