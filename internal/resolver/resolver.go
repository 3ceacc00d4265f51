// Package resolver turns a requested model name into a concrete provider
// binding using the alias table and the directory snapshot.
package resolver

import (
	"errors"
	"strings"

	"github.com/averba/model-relay/internal/alias"
	"github.com/averba/model-relay/internal/directory"
)

// ErrNoModelAvailable is returned when zero active models are configured.
var ErrNoModelAvailable = errors.New("no active model available")

// ResolvedModel is the provider binding a request routes to.
type ResolvedModel struct {
	InternalID  string
	Provider    directory.Provider
	EndpointURL string
	APIKeyRef   string
}

// Resolver is a pure function of (request, directory snapshot); it holds
// no mutable state.
type Resolver struct {
	aliases *alias.Table
}

func New(aliases *alias.Table) *Resolver {
	return &Resolver{aliases: aliases}
}

// Resolve maps requestedModel (possibly empty, possibly an alias, possibly
// a real id) onto an active directory record:
//
//  1. alias substitution,
//  2. active record matched by internal model id (case-insensitive),
//  3. fall back to the first active default record (first active record
//     when no default is flagged),
//  4. fail with ErrNoModelAvailable when nothing is active.
//
// The directory is expected to keep defaults unique; if it does not, the
// first encountered default wins.
func (r *Resolver) Resolve(requestedModel string, dir directory.Directory) (ResolvedModel, error) {
	internalID := r.aliases.Resolve(requestedModel)

	active := dir.Active()
	if len(active) == 0 {
		return ResolvedModel{}, ErrNoModelAvailable
	}

	for _, rec := range active {
		if strings.EqualFold(rec.InternalModelID, internalID) {
			return bind(rec), nil
		}
	}

	for _, rec := range active {
		if rec.IsDefault {
			return bind(rec), nil
		}
	}

	return bind(active[0]), nil
}

func bind(rec directory.ModelRecord) ResolvedModel {
	return ResolvedModel{
		InternalID:  rec.InternalModelID,
		Provider:    rec.Provider,
		EndpointURL: rec.EndpointURL,
		APIKeyRef:   rec.APIKeyRef,
	}
}
