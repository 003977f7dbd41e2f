// Package libsync computes which library modules a board needs and installs
// them.
//
// A sync starts from one of three roots:
//
//   - a program on the board (default code.py): its imports
//   - the board's /lib directory: everything already installed
//   - an explicit list of module names
//
// The roots are expanded over the catalog's dependency graph and every
// resulting module is classified against what is on the board:
//
//	up_to_date              same version as the catalog
//	missing                 not on the board (or a lone empty compiled file)
//	invalid_file            present but carries no version tag, including a
//	                        package directory with no readable files
//	bad_binary_format       compiled for another firmware format
//	minor_update_available  same major, different version
//	major_update_available  different major
//
// Install writes every module whose status is neither up_to_date nor
// bad_binary_format. Bad binaries are reported and left alone unless the
// request names them in Force. A write conflict (the drive is not writable
// from this host) fails that module only; the remaining modules are still
// attempted and nothing is rolled back. The orchestrator re-diffs after
// installing so the report reflects what actually landed on the board.
//
// Only one sync runs per process. A request arriving while another is in
// progress is dropped and reported as Ignored; it is not queued.
package libsync
