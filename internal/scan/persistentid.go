package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// persistentID derives a stable identifier for a track from its path and
// size, mirroring the teacher's deterministicID seed-hashing approach.
// Library tools like iTunes/Music assign their own opaque persistent IDs;
// absent that, the file's own identity (path + size) is the next best
// stable key — renamed files get a new id, which matches the reconciler's
// treatment of "added" vs "modified" in the state diff.
func persistentID(path string, info interface{ Size() int64 }) string {
	seed := fmt.Sprintf("%s:%d", path, info.Size())
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:16])
}
