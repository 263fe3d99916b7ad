package gameserver

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
	"github.com/cory-johannsen/crystalpowers/internal/game/session"
	"github.com/cory-johannsen/crystalpowers/internal/game/tick"
	"github.com/cory-johannsen/crystalpowers/internal/powers"
)

// Request and response field names.
const (
	FieldActorID        = "actor_id"
	FieldName           = "name"
	FieldMode           = "mode"
	FieldPower          = "power"
	FieldPowers         = "powers"
	FieldVersion        = "version"
	FieldNeedsSelection = "needs_selection"
	FieldHasSelected    = "has_selected"
	FieldCanChange      = "can_change"
	FieldMessage        = "message"
	FieldEnabled        = "enabled"
	FieldFingerprint    = "fingerprint"
	FieldPersistError   = "last_persist_error"
)

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func actorID(req *structpb.Struct) (uuid.UUID, error) {
	raw := stringField(req, FieldActorID)
	if raw == "" {
		return uuid.Nil, status.Error(codes.InvalidArgument, "actor_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "actor_id %q: %v", raw, err)
	}
	return id, nil
}

func stringList(vals []string) *structpb.Value {
	list := make([]*structpb.Value, len(vals))
	for i, v := range vals {
		list[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: list})
}

func powerValue(def *power.Definition) *structpb.Value {
	if def == nil {
		return structpb.NewNullValue()
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":          structpb.NewStringValue(def.ID),
		"name":        structpb.NewStringValue(def.Name),
		"description": structpb.NewStringValue(def.Description),
		"icon":        structpb.NewStringValue(def.Icon),
		"abilities":   stringList(def.Abilities),
		"positives":   stringList(def.Positives),
		"negatives":   stringList(def.Negatives),
		"max_health":  structpb.NewNumberValue(float64(def.Traits.MaxHealth)),
		"can_fly":     structpb.NewBoolValue(def.Traits.CanFly),
	}})
}

func statusStruct(st powers.Status) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldActorID:     structpb.NewStringValue(st.Record.ActorID.String()),
		FieldHasSelected: structpb.NewBoolValue(st.Record.HasSelected),
		FieldCanChange:   structpb.NewBoolValue(st.CanChange),
		FieldPower:       powerValue(st.Power),
	}}
}

func powerStruct(def *power.Definition) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{FieldPower: powerValue(def)}}
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, power.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, selection.ErrAlreadySelected), errors.Is(err, session.ErrAlreadyConnected):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, selection.ErrNothingToClear),
		errors.Is(err, power.ErrEmptyCatalog),
		errors.Is(err, session.ErrNotConnected):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, tick.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}
