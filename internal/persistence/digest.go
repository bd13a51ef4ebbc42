package persistence

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ComputeDigest returns the hex BLAKE2b-256 digest of the snapshot contents.
// The id, save time, and stored digest are not covered.
func ComputeDigest(snapshot Snapshot) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only a key longer than 64 bytes can fail.
		panic(err)
	}
	writeCanonical(h, snapshot)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyDigest reports ErrCorruptSnapshot when snapshot.Digest does not match
// its contents.
func VerifyDigest(snapshot Snapshot) error {
	if want := ComputeDigest(snapshot); snapshot.Digest != want {
		return fmt.Errorf("%w: snapshot %s digest %q, contents hash to %q", ErrCorruptSnapshot, snapshot.ID, snapshot.Digest, want)
	}
	return nil
}

func writeCanonical(w io.Writer, snapshot Snapshot) {
	fmt.Fprintf(w, "users %d\n", len(snapshot.Users))
	for _, u := range snapshot.Users {
		fmt.Fprintf(w, "%q %q %q %s\n", u.ID, u.Username, u.Role, canonicalTime(u.CreatedAt))
	}
	fmt.Fprintf(w, "resources %d\n", len(snapshot.Resources))
	for _, r := range snapshot.Resources {
		fmt.Fprintf(w, "%q %q %q %d %q\n", r.ID, r.Name, r.Kind, r.Capacity, r.Category)
	}
	fmt.Fprintf(w, "reservations %d\n", len(snapshot.Reservations))
	for _, r := range snapshot.Reservations {
		cancelled := "-"
		if r.CancelledAt != nil {
			cancelled = canonicalTime(*r.CancelledAt)
		}
		fmt.Fprintf(w, "%q %q %q %d %d %t %s %s\n",
			r.ID, r.ResourceID, r.Username, r.Day, r.Slot, r.Active, canonicalTime(r.CreatedAt), cancelled)
	}
}

// TimeLayout is the text encoding used for stored timestamps.
const TimeLayout = time.RFC3339Nano

func canonicalTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
