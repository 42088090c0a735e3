// Package fsm is the protocol model of the three-state handshake under test.
//
// The model is a pure function of (state, input symbol, checksum outcome). It never raises a
// fault for an unknown symbol: anything that does not trigger an advance falls through to the
// echo branch of the current state.
//
//	State        Input   Next          Output
//	Idle         S       SynReceived   A
//	Idle         other   Idle          echo
//	SynReceived  K       AckReceived   C
//	SynReceived  other   SynReceived   echo
//	AckReceived  any     AckReceived   echo
//
// A failed checksum overrides the table: the state is unchanged and the output is the error
// marker E.
//
// Every (state, class) pair the model can produce is an Edge. Edges are the unit of FSM
// coverage.
package fsm
