// Package state defines the byte storage behind profiles.
//
// A Store only reads and writes complete documents for a path; parsing and
// layering stay in the aspen package. Saves must not truncate an existing
// document before the new bytes are complete:
//
//	Profile.Save -> Adapter.Serialize -> Store.Save(path, bytes)
//	Profile.Load -> Store.Load(path) -> Adapter.Parse
//
// FileStore works on any afero filesystem and writes through a temporary
// file renamed over the target. MemoryStore keeps documents in a map and is
// meant for tests and examples.
package state
