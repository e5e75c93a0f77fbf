// Package iterator implements the profile iterator of spec.md §4.F: a
// per-account, session-scoped, resumable scan over pkg/geoindex with the
// filter predicates of §4.F applied per candidate.
package iterator

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/afrodite/datingcore/ent"
	"github.com/afrodite/datingcore/ent/account"
	"github.com/afrodite/datingcore/ent/profile"
	entschema "github.com/afrodite/datingcore/ent/schema"
	"github.com/afrodite/datingcore/pkg/accountcache"
	"github.com/afrodite/datingcore/pkg/apperrors"
	"github.com/afrodite/datingcore/pkg/geoindex"
	"github.com/afrodite/datingcore/pkg/writeexec"
)

// PageSize is the fixed page size of spec.md §4.F ("reference uses N
// fixed by policy").
const PageSize = 20

// ProfileRef is one link returned in a page.
type ProfileRef struct {
	AccountID int64
}

// Page is the result of next_page.
type Page struct {
	SessionID uuid.UUID
	Profiles  []ProfileRef
}

// BlockChecker is the narrow view of pkg/interactions the iterator needs
// for its not-blocked filter predicate, kept as an interface so this
// package does not import pkg/interactions directly.
type BlockChecker interface {
	IsBlocked(ctx context.Context, a, b int64) (bool, error)
}

// resolvedFilters is the requester's active filter configuration,
// snapshotted at reset() time; it does not change mid-session even if
// the account edits its filters before calling next_page again (the
// client is expected to reset() after editing).
type resolvedFilters struct {
	AgeMin, AgeMax         int
	SearchGroupFlags       uint32
	LastSeenWindow         time.Duration
	ProfileCreatedAfter    *time.Time
	ProfileEditedAfter     *time.Time
	MinProfileTextLength   int32
	MaxProfileTextLength   int32
	MaxDistanceKm          float64
	RandomOrder            bool
	AttributeFilters       []entschema.ProfileAttributeValue
}

// session is one account's active iterator state.
type session struct {
	id           uuid.UUID
	requesterID  int64
	anchor       geoindex.Coord
	filters      resolvedFilters
	maxRadius    int32
	servedRadius int32 // rings fully completed and safe to skip on resume
}

// Engine runs the scan-and-filter pipeline of spec.md §4.F.
type Engine struct {
	grid   *geoindex.Grid
	bounds geoindex.Bounds
	cache  *accountcache.AccountCache
	db     *ent.Client
	exec   *writeexec.Executor
	blocks BlockChecker

	pageSize int

	mu       sync.Mutex
	sessions map[int64]*session
}

// New builds an iterator Engine.
func New(grid *geoindex.Grid, bounds geoindex.Bounds, cache *accountcache.AccountCache, db *ent.Client, exec *writeexec.Executor, blocks BlockChecker) *Engine {
	return &Engine{
		grid:     grid,
		bounds:   bounds,
		cache:    cache,
		db:       db,
		exec:     exec,
		blocks:   blocks,
		pageSize: PageSize,
		sessions: make(map[int64]*session),
	}
}

// Reset implements reset(account) → session_id: anchors a fresh session
// at the account's current location with its currently active filter
// settings, invalidating any prior session. The session write goes
// through the per-account concurrent-write API of spec.md §4.E(iii), the
// executor's own canonical example of that API's use.
func (e *Engine) Reset(ctx context.Context, accountID int64) (uuid.UUID, error) {
	prof, err := e.db.Profile.Query().
		Where(profile.HasAccountWith(account.ID(int(accountID)))).
		Only(ctx)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.ErrDataError, err)
	}

	filters := resolvedFilters{
		AgeMin:               prof.SearchAgeMin,
		AgeMax:               prof.SearchAgeMax,
		SearchGroupFlags:     prof.SearchGroupFlags,
		MaxDistanceKm:        prof.FilterSettings.MaxDistanceKm,
		RandomOrder:          prof.FilterSettings.RandomOrder,
		MinProfileTextLength: prof.FilterSettings.MinProfileTextLength,
		MaxProfileTextLength: prof.FilterSettings.MaxProfileTextLength,
		ProfileCreatedAfter:  prof.FilterSettings.ProfileCreatedAfter,
		ProfileEditedAfter:   prof.FilterSettings.ProfileEditedAfter,
		AttributeFilters:     prof.FilterSettings.AttributeFilters,
	}
	if s := prof.FilterSettings.LastSeenWindowSeconds; s > 0 {
		filters.LastSeenWindow = time.Duration(s) * time.Second
	}

	anchor := e.bounds.CellFor(prof.LocationLat, prof.LocationLon, e.grid.Width, e.grid.Height)
	maxRadius := e.radiusForDistance(filters.MaxDistanceKm)

	id := uuid.New()
	sess := &session{
		id:          id,
		requesterID: accountID,
		anchor:      anchor,
		filters:     filters,
		maxRadius:   maxRadius,
	}

	_, err = writeexec.SubmitForAccount(e.exec, ctx, accountID, func(ctx context.Context) (writeexec.Result[struct{}], error) {
		return writeexec.Result[struct{}]{
			CacheMutation: func() {
				e.mu.Lock()
				e.sessions[accountID] = sess
				e.mu.Unlock()
			},
		}, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// radiusForDistance converts a configured max-distance-km into a cell
// radius, clamped to the grid's interior extent. A non-positive distance
// (unconfigured) is treated as "no outer bound within the grid".
func (e *Engine) radiusForDistance(maxDistanceKm float64) int32 {
	maxDim := e.grid.Width
	if e.grid.Height > maxDim {
		maxDim = e.grid.Height
	}
	capRadius := maxDim / 2
	if maxDistanceKm <= 0 || e.bounds.CellSideKm <= 0 {
		return capRadius
	}
	r := int32(math.Ceil(maxDistanceKm / e.bounds.CellSideKm))
	if r > capRadius {
		return capRadius
	}
	if r < 1 {
		return 1
	}
	return r
}

// NextPage implements next_page(account, session_id) → page. If
// sessionID does not match the account's current session, it returns
// apperrors.ErrConflict signaling the client to reset (spec.md §4.F's
// `invalid_iterator_session_id` variant).
func (e *Engine) NextPage(ctx context.Context, accountID int64, sessionID uuid.UUID) (Page, error) {
	return writeexec.SubmitForAccount(e.exec, ctx, accountID, func(ctx context.Context) (writeexec.Result[Page], error) {
		e.mu.Lock()
		sess, ok := e.sessions[accountID]
		e.mu.Unlock()
		if !ok || sess.id != sessionID {
			return writeexec.Result[Page]{}, apperrors.ErrConflict
		}

		refs, newServedRadius, err := e.collect(ctx, accountID, sess)
		if err != nil {
			return writeexec.Result[Page]{}, err
		}

		page := Page{SessionID: sess.id, Profiles: refs}
		return writeexec.Result[Page]{
			Value: page,
			CacheMutation: func() {
				e.mu.Lock()
				if cur, ok := e.sessions[accountID]; ok && cur.id == sess.id {
					cur.servedRadius = newServedRadius
				}
				e.mu.Unlock()
			},
		}, nil
	})
}

// collect walks the spiral from sess's current served radius, filters
// each candidate, and stops once it has a page's worth or the scan area
// is exhausted.
func (e *Engine) collect(ctx context.Context, accountID int64, sess *session) ([]ProfileRef, int32, error) {
	area := geoindex.Rect{
		MinX: sess.anchor.X - sess.maxRadius,
		MinY: sess.anchor.Y - sess.maxRadius,
		MaxX: sess.anchor.X + sess.maxRadius,
		MaxY: sess.anchor.Y + sess.maxRadius,
	}

	var candidates []int64
	maxSeenRadius := sess.servedRadius
	var scanErr error

	e.grid.ScanSpiral(area, sess.anchor, sess.maxRadius, func(at geoindex.Coord, profiles []geoindex.ProfileLink) bool {
		dist := chebyshev(at, sess.anchor)
		if dist > maxSeenRadius {
			maxSeenRadius = dist
		}
		if dist <= sess.servedRadius {
			return true
		}

		sorted := append([]geoindex.ProfileLink(nil), profiles...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		for _, link := range sorted {
			candidateID := int64(link)
			if candidateID == accountID {
				continue // self-exclusion, SPEC_FULL.md Open Question decision #2
			}
			ok, err := e.matches(ctx, accountID, candidateID, sess.filters)
			if err != nil {
				scanErr = err
				return false
			}
			if !ok {
				continue
			}
			candidates = append(candidates, candidateID)
			if len(candidates) >= e.pageSize {
				return false
			}
		}
		return true
	})
	if scanErr != nil {
		return nil, 0, scanErr
	}

	newServedRadius := maxSeenRadius
	if len(candidates) >= e.pageSize && newServedRadius > 0 {
		// Stopped mid-ring; don't mark it fully served. The next page may
		// re-walk part of it — spec.md §4.F tolerates duplicates.
		newServedRadius--
	}
	if newServedRadius > sess.maxRadius {
		newServedRadius = sess.maxRadius
	}

	if sess.filters.RandomOrder {
		rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	}

	refs := make([]ProfileRef, len(candidates))
	for i, id := range candidates {
		refs[i] = ProfileRef{AccountID: id}
	}
	return refs, newServedRadius, nil
}

func chebyshev(a, b geoindex.Coord) int32 {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// matches applies the seven filter predicates of spec.md §4.F in
// cheapest-first order.
func (e *Engine) matches(ctx context.Context, requesterID, candidateID int64, f resolvedFilters) (bool, error) {
	var cached *accountcache.Entry
	found := e.cache.ReadByID(candidateID, func(entry *accountcache.Entry) {
		snapshot := *entry
		if entry.Profile != nil {
			p := *entry.Profile
			snapshot.Profile = &p
		}
		cached = &snapshot
	})
	if !found || cached.Profile == nil {
		return false, nil
	}
	if cached.Visibility != accountcache.VisibilityPublic {
		return false, nil
	}

	if f.SearchGroupFlags&cached.Profile.SearchGroupFlags == 0 {
		return false, nil
	}

	if cached.Profile.Age < f.AgeMin || cached.Profile.Age > f.AgeMax {
		return false, nil
	}

	if f.LastSeenWindow > 0 && time.Since(cached.Profile.LastSeenAt) > f.LastSeenWindow {
		return false, nil
	}
	if f.ProfileCreatedAfter != nil && cached.Profile.CreatedAt.Before(*f.ProfileCreatedAfter) {
		return false, nil
	}
	if f.ProfileEditedAfter != nil && cached.Profile.EditedAt.Before(*f.ProfileEditedAfter) {
		return false, nil
	}
	if f.MinProfileTextLength > 0 && cached.Profile.ProfileTextLength < f.MinProfileTextLength {
		return false, nil
	}
	if f.MaxProfileTextLength > 0 && cached.Profile.ProfileTextLength > f.MaxProfileTextLength {
		return false, nil
	}

	if !attributesMatch(f.AttributeFilters, cached.Profile.AttributeValues) {
		return false, nil
	}

	requesterLat, requesterLon, rok := e.requesterLocation(requesterID)
	if !rok {
		return false, nil
	}
	if f.MaxDistanceKm > 0 {
		d := haversineKm(requesterLat, requesterLon, cached.Profile.Lat, cached.Profile.Lon)
		if d > f.MaxDistanceKm {
			return false, nil
		}
	}

	blocked, err := e.blocks.IsBlocked(ctx, requesterID, candidateID)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	return true, nil
}

func (e *Engine) requesterLocation(requesterID int64) (lat, lon float64, ok bool) {
	found := e.cache.ReadByID(requesterID, func(entry *accountcache.Entry) {
		if entry.Profile != nil {
			lat, lon = entry.Profile.Lat, entry.Profile.Lon
			ok = true
		}
	})
	return lat, lon, found && ok
}

// attributesMatch implements spec.md §3's ProfileAttribute match rule
// per filter entry: bitflag-set predicates are bitwise-AND-non-zero,
// two-level-enum predicates are top-level equality plus optional
// sub-level equality, and number-list predicates require the filter's
// sorted list to be a subsequence of the profile's sorted list. A filter
// with no corresponding profile value fails the match.
func attributesMatch(filters, values []entschema.ProfileAttributeValue) bool {
	if len(filters) == 0 {
		return true
	}
	byID := make(map[int32]entschema.ProfileAttributeValue, len(values))
	for _, v := range values {
		byID[v.AttributeID] = v
	}
	for _, want := range filters {
		have, ok := byID[want.AttributeID]
		if !ok {
			return false
		}
		switch {
		case want.Bitflags != 0:
			if have.Bitflags&want.Bitflags == 0 {
				return false
			}
		case want.TopLevel != nil:
			if have.TopLevel == nil || *have.TopLevel != *want.TopLevel {
				return false
			}
			if want.SubLevel != nil && (have.SubLevel == nil || *have.SubLevel != *want.SubLevel) {
				return false
			}
		case len(want.Numbers) > 0:
			if !isSubsequence(want.Numbers, have.Numbers) {
				return false
			}
		}
	}
	return true
}

// isSubsequence reports whether every element of want appears in have,
// in the same relative order (both are kept sorted ascending per
// spec.md §3).
func isSubsequence(want, have []int32) bool {
	i := 0
	for _, h := range have {
		if i >= len(want) {
			break
		}
		if h == want[i] {
			i++
		}
	}
	return i == len(want)
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const r = geoindex.EarthRadiusKm
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return r * c
}
