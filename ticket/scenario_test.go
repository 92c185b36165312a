package ticket

import (
	"errors"
	"os"
	"testing"

	"bilheteria-cli/keystore"
	"bilheteria-cli/store"
)

func fileBackedDesk(t *testing.T) (*Issuer, *Verifier, store.Paths) {
	t.Helper()
	paths := store.Paths{Root: t.TempDir()}
	keys := keystore.New(paths, keystore.WithWorkFactor(10))
	if _, err := keys.Generate("key-pass"); err != nil {
		t.Fatal(err)
	}
	issuer := NewIssuer(keys, "key-pass", nil, nil)
	verifier := NewVerifier(keys, store.NewReplayGuard(paths.Replay(), nil), nil)
	return issuer, verifier, paths
}

func TestScenario_LastSeatOfNightfall(t *testing.T) {
	issuer, verifier, _ := fileBackedDesk(t)
	room := roomWithSeats(1)

	issued, err := issuer.Issue(room)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if room.Screening.Seats != 0 {
		t.Fatalf("expected 0 seats left, got %d", room.Screening.Seats)
	}
	if _, err := issuer.Issue(room); !errors.Is(err, ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut, got %v", err)
	}

	data, err := Marshal(issued)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.VerifyBytes(data); err != nil {
		t.Fatalf("expected first presentation to pass, got %v", err)
	}
	if _, err := verifier.VerifyBytes(data); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}
}

func TestScenario_WrongKeyPassphraseKeepsSeat(t *testing.T) {
	paths := store.Paths{Root: t.TempDir()}
	keys := keystore.New(paths, keystore.WithWorkFactor(10))
	if _, err := keys.Generate("key-pass"); err != nil {
		t.Fatal(err)
	}
	room := roomWithSeats(1)

	_, err := NewIssuer(keys, "not-the-pass", nil, nil).Issue(room)
	if !errors.Is(err, ErrKeyUnavailable) || !errors.Is(err, keystore.ErrAuthentication) {
		t.Fatalf("expected ErrKeyUnavailable wrapping ErrAuthentication, got %v", err)
	}
	if room.Screening.Seats != 1 {
		t.Fatalf("expected seat to be kept, got %d", room.Screening.Seats)
	}
}

func TestScenario_LostReplayRecordReadmitsTicket(t *testing.T) {
	for _, damage := range []string{"corrupted", "deleted"} {
		t.Run(damage, func(t *testing.T) {
			issuer, verifier, paths := fileBackedDesk(t)
			issued, err := issuer.Issue(roomWithSeats(1))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := verifier.Verify(issued); err != nil {
				t.Fatal(err)
			}

			switch damage {
			case "corrupted":
				err = os.WriteFile(paths.Replay(), []byte("{not json"), 0o644)
			case "deleted":
				err = os.Remove(paths.Replay())
			}
			if err != nil {
				t.Fatal(err)
			}

			if _, err := verifier.Verify(issued); err != nil {
				t.Fatalf("expected ticket to be accepted again, got %v", err)
			}
			if _, err := verifier.Verify(issued); !errors.Is(err, ErrAlreadyRedeemed) {
				t.Fatalf("expected replay record to be rebuilt, got %v", err)
			}
		})
	}
}
