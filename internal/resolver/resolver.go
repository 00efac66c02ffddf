// Package resolver fuzzy-matches user-supplied course names against the
// catalog collection.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/course-rag/backend/pkg/logger"
)

// DefaultMaxDistance is the accept/reject cutoff for the 1-NN catalog
// match. Exact titles score near 0, legitimate partial matches stay
// below ~1.6, unrelated strings land at 1.7 and above.
const DefaultMaxDistance = 1.65

// CatalogSearcher is the slice of the vector store the resolver needs.
type CatalogSearcher interface {
	NearestCourse(ctx context.Context, name string) (string, float32, error)
}

type Resolver struct {
	catalog     CatalogSearcher
	maxDistance float32
}

func New(catalog CatalogSearcher, maxDistance float32) *Resolver {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Resolver{catalog: catalog, maxDistance: maxDistance}
}

// Resolve maps a raw user string to an exact course title. The nearest
// catalog entry is accepted only below the distance cutoff; always
// returning the closest course would silently misattribute results when
// the user names a nonexistent course. Store failures resolve to no
// match rather than propagating.
func (r *Resolver) Resolve(ctx context.Context, rawName string) (string, bool) {
	if rawName == "" {
		return "", false
	}

	title, distance, err := r.catalog.NearestCourse(ctx, rawName)
	if err != nil {
		logger.Warn("course name resolution failed", zap.String("name", rawName), zap.Error(err))
		return "", false
	}
	if title == "" {
		return "", false
	}

	logger.Debug("course name resolved",
		zap.String("raw", rawName),
		zap.String("match", title),
		zap.Float32("distance", distance),
	)

	if distance >= r.maxDistance {
		return "", false
	}
	return title, true
}
