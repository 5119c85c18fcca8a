package memstore

import (
	"stagepay/internal/model"
)

// AddProject stores p with a fresh id and returns the stored copy.
func (s *Store) AddProject(p model.Project) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.d.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.Now()
	}
	p.UpdatedAt = p.CreatedAt
	s.d.projects[p.ID] = p
	return p
}

func (s *Store) AddStage(st model.Stage) model.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.d.id()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.Now()
	}
	st.UpdatedAt = st.CreatedAt
	s.d.stages[st.ID] = st
	return st
}

// AddPayment keeps explicit timestamps so tests can age payments.
func (s *Store) AddPayment(p model.Payment) model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.d.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	s.d.payments[p.ID] = p
	return p
}

func (s *Store) AddProfile(b model.BillingProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.profiles[b.UserID] = b
}

func (s *Store) AddPaymentMethod(m model.SavedPaymentMethod) model.SavedPaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.d.id()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.Now()
	}
	s.d.methods[m.ID] = m
	return m
}

func (s *Store) AddTeamMember(m model.TeamMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.d.id()
	s.d.team[m.ID] = m
}

func (s *Store) AddMaterial(m model.Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.d.id()
	s.d.materials[m.ID] = m
}

func (s *Store) AddMedia(m model.MediaItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.d.id()
	s.d.media[m.ID] = m
}

func (s *Store) Project(id int64) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.projects[id]
}

func (s *Store) Stage(id int64) model.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.stages[id]
}

func (s *Store) Payment(id int64) model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.payments[id]
}

// PaymentsFor returns every payment of a project, oldest first.
func (s *Store) PaymentsFor(projectID int64) []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for _, p := range s.d.payments {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out
}

func (s *Store) StagesFor(projectID int64) []model.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Stage
	for _, st := range s.d.stages {
		if st.ProjectID == projectID {
			out = append(out, st)
		}
	}
	sortStages(out)
	return out
}

func (s *Store) Profile(userID int64) model.BillingProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.profiles[userID]
}

// Published returns the outbox writes of committed transactions.
func (s *Store) Published() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.d.events...)
}
