package util

import "testing"

func TestMaskSensitiveQuery(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{raw: "", want: ""},
		{raw: "page=2&limit=20", want: "page=2&limit=20"},
		{raw: "token=abcdefghijkl&page=1", want: "token=abcd...ijkl&page=1"},
		{raw: "totp_code=123456", want: "totp_code=12...56"},
		{raw: "code=abc", want: "code=a...c"},
		{raw: "new_password=ab", want: "new_password=ab"},
		{raw: "flag&secret", want: "flag&secret="},
	}
	for _, tc := range cases {
		if got := MaskSensitiveQuery(tc.raw); got != tc.want {
			t.Fatalf("MaskSensitiveQuery(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestWritablePath(t *testing.T) {
	t.Setenv("WRITABLE_PATH", " /srv/ems/../ems/ ")
	if got := WritablePath(); got != "/srv/ems" {
		t.Fatalf("WritablePath() = %q", got)
	}
	t.Setenv("WRITABLE_PATH", "")
	t.Setenv("writable_path", "/tmp/ems")
	if got := WritablePath(); got != "/tmp/ems" {
		t.Fatalf("WritablePath() = %q", got)
	}
}
