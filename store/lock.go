package store

import pkderrors "github.com/icao-pkd/pkdmirror/errors"

// AdvisoryLock acquires a MySQL session-scoped advisory lock via GET_LOCK,
// giving the Reconciliation Engine a single-writer guarantee across
// multiple process instances; the engine takes one lock name for a whole
// run, covering every certificate type. timeoutSeconds bounds how long
// GET_LOCK blocks before giving up; a return of 0 (lock held elsewhere) is
// reported as an error rather than silently proceeding unlocked.
func AdvisoryLock(s OneSelector, name string, timeoutSeconds int) error {
	var got int
	if err := s.SelectOne(&got, "SELECT GET_LOCK(?, ?)", name, timeoutSeconds); err != nil {
		return pkderrors.DBErrorf("acquiring advisory lock %s: %v", name, err)
	}
	if got != 1 {
		return pkderrors.DBErrorf("advisory lock %s held by another session", name)
	}
	return nil
}

// AdvisoryUnlock releases a lock taken by AdvisoryLock. Safe to call even
// if the lock was never actually held; RELEASE_LOCK is a no-op in that
// case.
func AdvisoryUnlock(ex Execer, name string) error {
	if _, err := ex.Exec("SELECT RELEASE_LOCK(?)", name); err != nil {
		return pkderrors.DBErrorf("releasing advisory lock %s: %v", name, err)
	}
	return nil
}
