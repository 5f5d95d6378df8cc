// Package idmap computes and applies the user-namespace ID mapping of a
// sandbox.
package idmap

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
)

// Range maps Length consecutive IDs starting at NamespaceID inside the
// namespace onto IDs starting at HostID outside it.
type Range struct {
	NamespaceID int
	HostID      int
	Length      int
}

func (r Range) String() string {
	return fmt.Sprintf("%d->%d(%d)", r.NamespaceID, r.HostID, r.Length)
}

func (r Range) args() []string {
	return []string{
		strconv.Itoa(r.NamespaceID),
		strconv.Itoa(r.HostID),
		strconv.Itoa(r.Length),
	}
}

// Mapping is the UID and GID tables of one sandbox. It is computed once
// and never modified.
type Mapping struct {
	UIDs []Range
	GIDs []Range
}

// Pool is the block of subordinate IDs the host user may delegate.
type Pool struct {
	UIDStart int
	GIDStart int
	Count    int
}

const (
	// DefaultSubordinateStart is the first subordinate ID assumed when no
	// pool is configured.
	DefaultSubordinateStart = 165536
	// DefaultSubordinateCount is the size of the default pool.
	DefaultSubordinateCount = 65535
)

// DefaultPool returns the fixed 165536+65535 pool for both tables.
func DefaultPool() Pool {
	return Pool{
		UIDStart: DefaultSubordinateStart,
		GIDStart: DefaultSubordinateStart,
		Count:    DefaultSubordinateCount,
	}
}

// Validate checks the pool can back a mapping.
func (p Pool) Validate() error {
	if p.Count <= 0 {
		return fmt.Errorf("subordinate id count must be positive, got %d", p.Count)
	}
	if p.UIDStart <= 0 || p.GIDStart <= 0 {
		return fmt.Errorf("subordinate id start must be positive, got uid %d gid %d", p.UIDStart, p.GIDStart)
	}
	return nil
}

// New builds the mapping for a sandbox started by a host user with the
// given effective IDs: namespace root is the host user itself, and
// namespace IDs from 1 upward come from the pool.
func New(euid, egid int, pool Pool) Mapping {
	return Mapping{
		UIDs: []Range{
			{NamespaceID: 0, HostID: euid, Length: 1},
			{NamespaceID: 1, HostID: pool.UIDStart, Length: pool.Count},
		},
		GIDs: []Range{
			{NamespaceID: 0, HostID: egid, Length: 1},
			{NamespaceID: 1, HostID: pool.GIDStart, Length: pool.Count},
		},
	}
}

// HelperArgs renders the argument list of newuidmap/newgidmap:
// the target pid followed by one ns/host/length triple per range.
func HelperArgs(pid int, ranges []Range) []string {
	return append([]string{strconv.Itoa(pid)}, lo.FlatMap(ranges, func(r Range, _ int) []string {
		return r.args()
	})...)
}
