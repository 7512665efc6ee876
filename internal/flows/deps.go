package flows

// Deps groups flow dependency sets. The root client builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Send SendDeps
}
