package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Repository used by the service tests. A
// single mutex serializes transactions, and a snapshot taken at Tx
// entry is restored on error, which models the store's all-or-nothing
// commit closely enough to exercise every service path.
type memStore struct {
	mu           sync.Mutex
	slots        map[uuid.UUID]*Slot
	holds        map[uuid.UUID]*Hold
	appointments map[uuid.UUID]*Appointment
	doctors      map[uuid.UUID]*Doctor
	patients     map[uuid.UUID]*Patient
}

func newMemStore() *memStore {
	return &memStore{
		slots:        make(map[uuid.UUID]*Slot),
		holds:        make(map[uuid.UUID]*Hold),
		appointments: make(map[uuid.UUID]*Appointment),
		doctors:      make(map[uuid.UUID]*Doctor),
		patients:     make(map[uuid.UUID]*Patient),
	}
}

func cloneMap[T any](src map[uuid.UUID]*T) map[uuid.UUID]*T {
	dst := make(map[uuid.UUID]*T, len(src))
	for k, v := range src {
		cp := *v
		dst[k] = &cp
	}
	return dst
}

func (m *memStore) Tx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slots := cloneMap(m.slots)
	holds := cloneMap(m.holds)
	appointments := cloneMap(m.appointments)

	if err := fn(&memTx{store: m}); err != nil {
		m.slots = slots
		m.holds = holds
		m.appointments = appointments
		return err
	}
	return nil
}

func (m *memStore) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getSlotLocked(m, id)
}

func getSlotLocked(m *memStore, id uuid.UUID) (*Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSlotsByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Slot
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.Date == date {
			result = append(result, *s)
		}
	}
	sortSlots(result)
	return result, nil
}

func (m *memStore) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Slot
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.Status == SlotAvailable && s.Date >= fromDate && s.Date <= toDate {
			result = append(result, *s)
		}
	}
	sortSlots(result)
	return result, nil
}

func sortSlots(slots []Slot) {
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0; j-- {
			a, b := slots[j-1], slots[j]
			if a.Date > b.Date || (a.Date == b.Date && a.StartTime > b.StartTime) {
				slots[j-1], slots[j] = b, a
			}
		}
	}
}

func (m *memStore) CreateSlot(ctx context.Context, slot *Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.slots {
		if s.DoctorID == slot.DoctorID && s.Date == slot.Date && s.StartTime == slot.StartTime {
			return false, nil
		}
	}
	cp := *slot
	m.slots[slot.ID] = &cp
	return true, nil
}

func (m *memStore) GetHold(ctx context.Context, id uuid.UUID) (*Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holds[id]
	if !ok {
		return nil, ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *memStore) FindExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Hold
	for _, h := range m.holds {
		if h.ExpiresAt.Before(now) {
			result = append(result, *h)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (m *memStore) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getAppointmentLocked(m, id)
}

func getAppointmentLocked(m *memStore, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memStore) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memStore) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getDoctorLocked(m, id)
}

func getDoctorLocked(m *memStore, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return getPatientLocked(m, id)
}

func getPatientLocked(m *memStore, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

// memTx operates directly on the store maps; the store mutex is held
// for the whole transaction.
type memTx struct {
	store *memStore
}

func (t *memTx) LockPatient(ctx context.Context, patientID uuid.UUID) error {
	// The store mutex already serializes all transactions.
	return nil
}

func (t *memTx) GetSlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return getSlotLocked(t.store, id)
}

func (t *memTx) SetSlotOnHold(ctx context.Context, slotID, patientID uuid.UUID, expiresAt time.Time) error {
	s, ok := t.store.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if s.Status != SlotAvailable {
		return ErrSlotUnavailable
	}
	owner := patientID
	exp := expiresAt
	s.Status = SlotOnHold
	s.HoldOwner = &owner
	s.HoldExpiresAt = &exp
	return nil
}

func (t *memTx) SetSlotBooked(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	s, ok := t.store.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	apptID := appointmentID
	s.Status = SlotBooked
	s.AppointmentID = &apptID
	s.HoldOwner = nil
	s.HoldExpiresAt = nil
	return nil
}

func (t *memTx) SetSlotAvailable(ctx context.Context, slotID uuid.UUID) error {
	s, ok := t.store.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	s.Status = SlotAvailable
	s.HoldOwner = nil
	s.HoldExpiresAt = nil
	s.AppointmentID = nil
	return nil
}

func (t *memTx) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	delete(t.store.slots, slotID)
	return nil
}

func (t *memTx) CreateHold(ctx context.Context, h *Hold) error {
	cp := *h
	t.store.holds[h.ID] = &cp
	return nil
}

func (t *memTx) GetHoldForUpdate(ctx context.Context, id uuid.UUID) (*Hold, error) {
	h, ok := t.store.holds[id]
	if !ok {
		return nil, ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (t *memTx) DeleteHold(ctx context.Context, id uuid.UUID) error {
	delete(t.store.holds, id)
	return nil
}

func (t *memTx) CreateAppointment(ctx context.Context, a *Appointment) error {
	cp := *a
	t.store.appointments[a.ID] = &cp
	return nil
}

func (t *memTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return getAppointmentLocked(t.store, id)
}

func (t *memTx) MarkAppointmentCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	a, ok := t.store.appointments[id]
	if !ok || a.Status != StatusScheduled {
		return ErrAppointmentNotFound
	}
	cancelledAt := at
	a.Status = StatusCancelled
	a.CancelledAt = &cancelledAt
	a.UpdatedAt = at
	return nil
}

func (t *memTx) HasScheduledWithDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	for _, a := range t.store.appointments {
		if a.PatientID == patientID && a.DoctorID == doctorID && a.Status == StatusScheduled {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ListScheduledOnDate(ctx context.Context, patientID uuid.UUID, date string) ([]Appointment, error) {
	var result []Appointment
	for _, a := range t.store.appointments {
		if a.PatientID == patientID && a.Date == date && a.Status == StatusScheduled {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (t *memTx) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return getDoctorLocked(t.store, id)
}

func (t *memTx) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return getPatientLocked(t.store, id)
}

// memNotifier records change signals and fans them out to subscribers.
type memNotifier struct {
	mu      sync.Mutex
	changes []string
	subs    map[string][]chan struct{}
}

func newMemNotifier() *memNotifier {
	return &memNotifier{subs: make(map[string][]chan struct{})}
}

func (n *memNotifier) SlotsChanged(ctx context.Context, doctorID uuid.UUID, date string) {
	key := doctorID.String() + "|" + date
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, key)
	for _, ch := range n.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *memNotifier) Subscribe(ctx context.Context, doctorID uuid.UUID, date string) (<-chan struct{}, func(), error) {
	key := doctorID.String() + "|" + date
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs[key] = append(n.subs[key], ch)
	n.mu.Unlock()
	return ch, func() {}, nil
}

func (n *memNotifier) changeCount(doctorID uuid.UUID, date string) int {
	key := doctorID.String() + "|" + date
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, c := range n.changes {
		if c == key {
			count++
		}
	}
	return count
}
