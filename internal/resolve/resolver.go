// Package resolve centralizes customer identity resolution. Every import
// path goes through the same dual branch: the "divers" sentinel bypasses
// the registry and trusts the sheet's override cells, any other code must
// exist in the registry.
package resolve

import (
	"context"
	"errors"

	"github.com/mikaelarth/fnev4/internal/model"
)

// DiversClientCode is the reserved code for anonymous walk-in customers.
// The legacy system buried this as a magic value; it is an explicit,
// overridable constant here.
const DiversClientCode = "1999"

// ErrClientNotFound is returned by registries for an unknown client code.
var ErrClientNotFound = errors.New("client not found")

// Registry is the read side of the client store consumed during resolution.
type Registry interface {
	ClientByCode(ctx context.Context, code string) (*model.Client, error)
}

// Identity is the resolved counterparty of one invoice. A divers identity
// is authoritative for that invoice only and is never written back.
type Identity struct {
	Name   string
	NCC    string
	Kind   model.ClientKind
	Divers bool
}

// Resolver resolves extracted client codes against the registry.
type Resolver struct {
	registry Registry
	sentinel string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSentinel overrides the divers sentinel code.
func WithSentinel(code string) Option {
	return func(r *Resolver) {
		r.sentinel = code
	}
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		sentinel: DiversClientCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves the candidate's client code. Failures are field errors,
// collected like any other validation finding; the registry is not queried
// at all on the sentinel path.
func (r *Resolver) Resolve(ctx context.Context, cand *model.InvoiceCandidate) (*Identity, []*model.FieldError) {
	if cand.ClientCode == "" {
		return nil, []*model.FieldError{
			model.NewFieldError(cand.Sheet, "client_code", "", nil, "client code is required"),
		}
	}

	if cand.ClientCode == r.sentinel {
		return r.resolveDivers(cand)
	}

	client, err := r.registry.ClientByCode(ctx, cand.ClientCode)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, []*model.FieldError{
				model.NewFieldError(cand.Sheet, "client_code", "", cand.ClientCode,
					"client code not found in registry; create the client before importing"),
			}
		}
		return nil, []*model.FieldError{
			model.NewFieldError(cand.Sheet, "client_code", "", cand.ClientCode, "registry lookup failed: "+err.Error()),
		}
	}

	return &Identity{
		Name: client.Name,
		NCC:  client.NCC,
		Kind: client.Kind,
	}, nil
}

func (r *Resolver) resolveDivers(cand *model.InvoiceCandidate) (*Identity, []*model.FieldError) {
	if cand.ClientName == "" {
		return nil, []*model.FieldError{
			model.NewFieldError(cand.Sheet, "client_name", "", nil,
				"divers client requires the name override cell"),
		}
	}
	return &Identity{
		Name:   cand.ClientName,
		NCC:    cand.ClientNCC,
		Kind:   model.ClientIndividual,
		Divers: true,
	}, nil
}
