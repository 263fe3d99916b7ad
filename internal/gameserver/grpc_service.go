// Package gameserver exposes the power operations over gRPC.
package gameserver

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/powers"
)

// Executor runs closures on the tick thread.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// PowerServer implements powers.v1.PowerService.
type PowerServer struct {
	svc       *powers.Service
	exec      Executor
	tokenHash string
	logger    *zap.Logger
}

// NewPowerServer creates a PowerServer. An empty tokenHash disables the
// privileged RPCs.
//
// Precondition: svc, exec and logger must be non-nil.
func NewPowerServer(svc *powers.Service, exec Executor, tokenHash string, logger *zap.Logger) *PowerServer {
	return &PowerServer{svc: svc, exec: exec, tokenHash: tokenHash, logger: logger}
}

// Register attaches the service to a gRPC server.
func (s *PowerServer) Register(gs grpc.ServiceRegistrar) {
	gs.RegisterService(&ServiceDesc, s)
}

// do runs fn on the tick thread and maps both failure paths onto a status.
func (s *PowerServer) do(ctx context.Context, fn func() error) error {
	var err error
	if doErr := s.exec.Do(ctx, func() { err = fn() }); doErr != nil {
		return toStatus(doErr)
	}
	return toStatus(err)
}

// Connect registers a headless actor backed by an in-memory Sim.
func (s *PowerServer) Connect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := actorID(req)
	if err != nil {
		return nil, err
	}
	mode := actor.ModeSurvival
	if m := stringField(req, FieldMode); m != "" {
		mode = actor.GameMode(m)
		switch mode {
		case actor.ModeSurvival, actor.ModeAdventure, actor.ModeCreative, actor.ModeSpectator:
		default:
			return nil, status.Errorf(codes.InvalidArgument, "unknown mode %q", m)
		}
	}
	sim := actor.NewSim(id, stringField(req, FieldName))
	sim.Mode = mode

	var needs bool
	err = s.do(ctx, func() error {
		var joinErr error
		needs, joinErr = s.svc.Join(ctx, sim)
		return joinErr
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("actor connected",
		zap.String("actor", id.String()),
		zap.String("mode", string(mode)),
		zap.Bool("needs_selection", needs),
	)
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldNeedsSelection: structpb.NewBoolValue(needs),
	}}, nil
}

// Disconnect unregisters the actor and flushes the store.
func (s *PowerServer) Disconnect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := actorID(req)
	if err != nil {
		return nil, err
	}
	if err := s.do(ctx, func() error { return s.svc.Quit(ctx, id) }); err != nil {
		return nil, err
	}
	s.logger.Info("actor disconnected", zap.String("actor", id.String()))
	return &structpb.Struct{}, nil
}

// Select binds the named power to a connected actor.
func (s *PowerServer) Select(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := actorID(req)
	if err != nil {
		return nil, err
	}
	name := stringField(req, FieldPower)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "power is required")
	}
	var def *power.Definition
	err = s.do(ctx, func() error {
		var selErr error
		def, selErr = s.svc.Select(ctx, id, name)
		return selErr
	})
	if err != nil {
		return nil, err
	}
	return powerStruct(def), nil
}

// RandomSelect binds a random power to a connected actor.
func (s *PowerServer) RandomSelect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := actorID(req)
	if err != nil {
		return nil, err
	}
	var def *power.Definition
	err = s.do(ctx, func() error {
		var selErr error
		def, selErr = s.svc.RandomSelect(ctx, id)
		return selErr
	})
	if err != nil {
		return nil, err
	}
	return powerStruct(def), nil
}

// Clear removes an actor's power. Requires the admin token.
func (s *PowerServer) Clear(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.unbind(ctx, req, s.svc.Clear)
}

// Reset replaces an actor's record with a fresh one. Requires the admin token.
func (s *PowerServer) Reset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.unbind(ctx, req, s.svc.Reset)
}

func (s *PowerServer) unbind(ctx context.Context, req *structpb.Struct, op func(context.Context, uuid.UUID) error) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	id, err := actorID(req)
	if err != nil {
		return nil, err
	}
	if err := s.do(ctx, func() error { return op(ctx, id) }); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

// Current reports an actor's selection.
func (s *PowerServer) Current(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := actorID(req)
	if err != nil {
		return nil, err
	}
	var st powers.Status
	if err := s.do(ctx, func() error { st = s.svc.Current(id); return nil }); err != nil {
		return nil, err
	}
	return statusStruct(st), nil
}

// List returns the catalog in display order.
func (s *PowerServer) List(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	defs := s.svc.Catalog()
	vals := make([]*structpb.Value, len(defs))
	for i, d := range defs {
		vals[i] = powerValue(d)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldVersion: structpb.NewNumberValue(float64(s.svc.CatalogVersion())),
		FieldPowers:  structpb.NewListValue(&structpb.ListValue{Values: vals}),
	}}, nil
}

// Reload rebuilds the catalog and runs the reload hooks. Requires the admin token.
func (s *PowerServer) Reload(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if err := s.do(ctx, func() error { return s.svc.Reload(ctx) }); err != nil {
		return nil, err
	}
	return s.List(ctx, nil)
}

// EncryptionStatus reports whether persisted records are encrypted.
func (s *PowerServer) EncryptionStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	c := s.svc.Cipher()
	enabled := c != nil && c.Initialized()
	fingerprint := ""
	if fp, ok := c.(interface{ Fingerprint() string }); ok && enabled {
		fingerprint = fp.Fingerprint()
	}
	persistErr := ""
	if err := s.svc.LastPersistError(); err != nil {
		persistErr = err.Error()
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldEnabled:      structpb.NewBoolValue(enabled),
		FieldFingerprint:  structpb.NewStringValue(fingerprint),
		FieldPersistError: structpb.NewStringValue(persistErr),
	}}, nil
}

// Events streams the notices queued for a connected actor until the actor
// disconnects or the client goes away.
func (s *PowerServer) Events(req *structpb.Struct, stream grpc.ServerStream) error {
	id, err := actorID(req)
	if err != nil {
		return err
	}
	sess, ok := s.svc.Session(id)
	if !ok {
		return status.Errorf(codes.FailedPrecondition, "%s is not connected", id)
	}
	notices := sess.Outbox.Notices()
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-notices:
			if !open {
				return nil
			}
			out := &structpb.Struct{Fields: map[string]*structpb.Value{
				FieldMessage: structpb.NewStringValue(msg),
			}}
			if err := stream.SendMsg(out); err != nil {
				return err
			}
		}
	}
}
