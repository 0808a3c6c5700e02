package oem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

type enqueuedEvent struct {
	eventType string
	payload   any
}

type memoryOEMRepo struct {
	oems     map[int64]OEM
	contacts []Contact
	events   []enqueuedEvent
	audits   []shared.AuditLog
	nextID   int64
}

func newMemoryOEMRepo() *memoryOEMRepo {
	return &memoryOEMRepo{oems: make(map[int64]OEM)}
}

func (r *memoryOEMRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := len(r.contacts)
	if err := fn(ctx, &memoryOEMTx{repo: r}); err != nil {
		r.contacts = r.contacts[:snapshot]
		return err
	}
	return nil
}

func (r *memoryOEMRepo) Get(ctx context.Context, id int64) (OEM, error) {
	item, ok := r.oems[id]
	if !ok {
		return OEM{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryOEMRepo) List(ctx context.Context, limit, offset int) ([]OEM, error) {
	var items []OEM
	for _, item := range r.oems {
		items = append(items, item)
	}
	return items, nil
}

func (r *memoryOEMRepo) SetStatus(ctx context.Context, id int64, status Status) (bool, error) {
	item, ok := r.oems[id]
	if !ok {
		return false, nil
	}
	item.Status = status
	r.oems[id] = item
	return true, nil
}

type memoryOEMTx struct {
	repo *memoryOEMRepo
}

func (t *memoryOEMTx) CreateOEM(ctx context.Context, item OEM) (int64, error) {
	t.repo.nextID++
	item.ID = t.repo.nextID
	t.repo.oems[item.ID] = item
	return item.ID, nil
}

func (t *memoryOEMTx) InsertContact(ctx context.Context, contact Contact) error {
	t.repo.contacts = append(t.repo.contacts, contact)
	return nil
}

func (t *memoryOEMTx) Enqueue(ctx context.Context, eventType string, payload any) error {
	t.repo.events = append(t.repo.events, enqueuedEvent{eventType: eventType, payload: payload})
	return nil
}

func (t *memoryOEMTx) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

func validContacts() []Contact {
	return []Contact{
		{Name: "asha rao", Email: "Asha@Oem.Example", Role: ContactSalesHead},
		{Name: "vikram shah", Email: "vikram@oem.example", Role: ContactSalesManager},
		{Name: "neel patel", Email: "neel@oem.example", Role: ContactFinanceManager},
	}
}

func TestCreateWritesContactsEventAndAudit(t *testing.T) {
	repo := newMemoryOEMRepo()
	svc := NewService(repo)
	actor := shared.Identity{UserID: 2, Role: "admin"}

	item, err := svc.Create(context.Background(), actor, CreateInput{Name: " Axle Motors ", Region: "west", Contacts: validContacts()})
	require.NoError(t, err)
	require.Equal(t, "Axle Motors", item.Name)
	require.Equal(t, StatusActive, item.Status)

	require.Len(t, repo.contacts, 3)
	require.Equal(t, "Asha Rao", repo.contacts[0].Name)
	require.Equal(t, "asha@oem.example", repo.contacts[0].Email)

	require.Len(t, repo.events, 1)
	require.Equal(t, outbox.EventOEMOnboarded, repo.events[0].eventType)
	require.Len(t, repo.audits, 1)
	require.Equal(t, "OEM_CREATE", repo.audits[0].Action)
}

func TestCreateRejectsBadContactSets(t *testing.T) {
	repo := newMemoryOEMRepo()
	svc := NewService(repo)
	actor := shared.Identity{UserID: 2, Role: "admin"}

	missing := validContacts()[:2]
	_, err := svc.Create(context.Background(), actor, CreateInput{Name: "Axle", Contacts: missing})
	require.ErrorIs(t, err, ErrContactRoles)

	duplicate := validContacts()
	duplicate[2].Role = ContactSalesHead
	_, err = svc.Create(context.Background(), actor, CreateInput{Name: "Axle", Contacts: duplicate})
	require.ErrorIs(t, err, ErrContactRoles)

	extra := append(validContacts(), Contact{Name: "x", Email: "x@oem.example", Role: "support"})
	_, err = svc.Create(context.Background(), actor, CreateInput{Name: "Axle", Contacts: extra})
	require.ErrorIs(t, err, ErrContactRoles)

	// Nothing persisted on any rejection.
	require.Empty(t, repo.oems)
	require.Empty(t, repo.contacts)
	require.Empty(t, repo.events)
}

func TestSetStatus(t *testing.T) {
	repo := newMemoryOEMRepo()
	repo.nextID = 1
	repo.oems[1] = OEM{ID: 1, Name: "Axle", Status: StatusActive}
	svc := NewService(repo)

	require.NoError(t, svc.SetStatus(context.Background(), 1, StatusInactive))
	require.Equal(t, StatusInactive, repo.oems[1].Status)

	require.ErrorIs(t, svc.SetStatus(context.Background(), 9, StatusActive), ErrNotFound)
	require.ErrorIs(t, svc.SetStatus(context.Background(), 1, Status("paused")), ErrValidation)
}
