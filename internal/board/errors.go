package board

import "errors"

// Domain errors for the board package.
var (
	// ErrBoardNotFound is returned when no ready board has the given key.
	ErrBoardNotFound = errors.New("board: not found")

	// ErrNoSession is returned when none of a board's channels can be
	// connected.
	ErrNoSession = errors.New("board: no session available")

	// ErrBusy is returned by TryDo while another action holds the board.
	ErrBusy = errors.New("board: busy")
)
