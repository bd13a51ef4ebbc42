package persistence

import (
	"errors"
	"testing"
	"time"
)

func sampleSnapshot() Snapshot {
	created := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
	cancelled := created.Add(time.Hour)
	return Snapshot{
		ID:    "snap-1",
		Users: []User{{ID: "USER-1001", Username: "admin", Role: RoleAdministrator, CreatedAt: created}},
		Resources: []Resource{
			{ID: "SR101", Name: "Computer Lab", Kind: KindRoom, Capacity: 20},
			{ID: "LE201", Name: "Microscopes", Kind: KindEquipment, Category: "Biology"},
		},
		Reservations: []Reservation{
			{ID: "RES-1", ResourceID: "SR101", Username: "alex", Day: 1, Slot: 2, Active: true, CreatedAt: created},
			{ID: "RES-2", ResourceID: "LE201", Username: "alex", Day: 0, Slot: 0, CreatedAt: created, CancelledAt: &cancelled},
		},
	}
}

func TestComputeDigest(t *testing.T) {
	t.Parallel()

	base := sampleSnapshot()
	digest := ComputeDigest(base)
	if len(digest) != 64 {
		t.Fatalf("expected 32 byte hex digest, got %q", digest)
	}

	t.Run("ignores id and save time", func(t *testing.T) {
		other := sampleSnapshot()
		other.ID = "snap-2"
		other.SavedAt = time.Now()
		if ComputeDigest(other) != digest {
			t.Fatalf("expected digest to cover contents only")
		}
	})

	t.Run("is location independent", func(t *testing.T) {
		other := sampleSnapshot()
		other.Users[0].CreatedAt = other.Users[0].CreatedAt.In(time.FixedZone("JST", 9*3600))
		if ComputeDigest(other) != digest {
			t.Fatalf("expected equal instants to hash equally")
		}
	})

	t.Run("changes with contents", func(t *testing.T) {
		mutations := map[string]func(*Snapshot){
			"capacity":   func(s *Snapshot) { s.Resources[0].Capacity = 21 },
			"active":     func(s *Snapshot) { s.Reservations[0].Active = false },
			"cancelled":  func(s *Snapshot) { s.Reservations[1].CancelledAt = nil },
			"order":      func(s *Snapshot) { s.Resources[0], s.Resources[1] = s.Resources[1], s.Resources[0] },
			"extra user": func(s *Snapshot) { s.Users = append(s.Users, User{Username: "x"}) },
		}
		for name, mutate := range mutations {
			other := sampleSnapshot()
			mutate(&other)
			if ComputeDigest(other) == digest {
				t.Fatalf("%s: expected digest to change", name)
			}
		}
	})
}

func TestVerifyDigest(t *testing.T) {
	t.Parallel()

	snap := sampleSnapshot()
	snap.Digest = ComputeDigest(snap)
	if err := VerifyDigest(snap); err != nil {
		t.Fatalf("VerifyDigest: %v", err)
	}

	snap.Resources[1].Category = "Chemistry"
	if err := VerifyDigest(snap); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("expected corrupt snapshot, got %v", err)
	}
}
