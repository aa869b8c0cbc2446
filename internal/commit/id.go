package commit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeID derives a commit identifier from the commit's own
// content. Parents are hashed in order, so the id can never collide
// with an ancestor's and the graph stays acyclic by construction.
func ComputeID(repoID, message, author string, createdAt time.Time, parents []string, changes []FileChange) string {
	h := sha256.New()
	fmt.Fprintf(h, "repo %s\n", repoID)
	for _, p := range parents {
		fmt.Fprintf(h, "parent %s\n", p)
	}
	fmt.Fprintf(h, "author %s %d\n", author, createdAt.UnixNano())
	fmt.Fprintf(h, "message %s\n", message)
	for _, fc := range changes {
		fmt.Fprintf(h, "change %s %s %s %s\n", fc.Kind, fc.Path, fc.ContentID, fc.PrevContentID)
	}
	return hex.EncodeToString(h.Sum(nil))
}
