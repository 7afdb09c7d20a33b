package service

import "notes-sync-client/internal/domain"

// Notifier is told about every change the UI should hear about.
type Notifier interface {
	NoteCreated(note *domain.Note)
	NoteUpdated(note *domain.Note)
	NoteDeleted(noteID string)
	NetworkChanged(state domain.NetworkState)
	SyncCompleted(report *domain.SyncReport)
}

type nopNotifier struct{}

func (nopNotifier) NoteCreated(*domain.Note)           {}
func (nopNotifier) NoteUpdated(*domain.Note)           {}
func (nopNotifier) NoteDeleted(string)                 {}
func (nopNotifier) NetworkChanged(domain.NetworkState) {}
func (nopNotifier) SyncCompleted(*domain.SyncReport)   {}
