package version

import "testing"

func TestString(t *testing.T) {
	v, sha, built := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = v, sha, built })

	Version, GitSHA, BuildTime = "v0.3.1", "a1b2c3d", "2025-03-14T09:26:53Z"
	want := "depthscan v0.3.1 (a1b2c3d, built 2025-03-14T09:26:53Z)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
