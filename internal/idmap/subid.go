package idmap

import (
	"fmt"
	"strconv"

	"github.com/moby/sys/user"
)

const (
	SubUIDFile = "/etc/subuid"
	SubGIDFile = "/etc/subgid"
)

// LoadSubordinatePool reads the first subordinate UID and GID ranges
// delegated to the named user (or to its numeric uid) that hold at least
// minCount IDs. It is meant to be called once at startup.
func LoadSubordinatePool(subuidPath, subgidPath, name string, uid, minCount int) (Pool, error) {
	uidStart, uidCount, err := firstSubID(subuidPath, name, uid, minCount)
	if err != nil {
		return Pool{}, err
	}
	gidStart, gidCount, err := firstSubID(subgidPath, name, uid, minCount)
	if err != nil {
		return Pool{}, err
	}
	return Pool{
		UIDStart: uidStart,
		GIDStart: gidStart,
		Count:    min(uidCount, gidCount, minCount),
	}, nil
}

func firstSubID(path, name string, uid, minCount int) (start, count int, err error) {
	numeric := strconv.Itoa(uid)
	ids, err := user.ParseSubIDFileFilter(path, func(s user.SubID) bool {
		return (s.Name == name || s.Name == numeric) && s.Count >= int64(minCount)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("reading subordinate ids from %s: %w", path, err)
	}
	if len(ids) == 0 {
		return 0, 0, fmt.Errorf("no subordinate id range of at least %d for %q in %s", minCount, name, path)
	}
	return int(ids[0].SubID), int(ids[0].Count), nil
}
