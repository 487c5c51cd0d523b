package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "lesson:watch", true},
		{"student", "submission:create", true},
		{"student", "submission:review", false},
		{"student", "enrollment:manage", false},
		{"mentor", "submission:review", true},
		{"mentor", "content:manage", true},
		{"mentor", "pathway:advance", false},
		{"admin", "anything:at-all", true},
		{"nobody", "course:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestAny(t *testing.T) {
	c := NewChecker(nil)
	if !c.Any("student", "submission:view-own", "submission:view-all") {
		t.Error("student should pass with view-own")
	}
	if c.Any("nobody", "submission:view-own", "submission:view-all") {
		t.Error("unknown role should fail")
	}
}

func TestWildcardPrefix(t *testing.T) {
	c := NewChecker(map[string][]string{"ops": {"pathway:*"}})
	if !c.Has("ops", "pathway:advance") {
		t.Error("prefix wildcard should match")
	}
	if c.Has("ops", "course:view") {
		t.Error("prefix wildcard should not match other namespaces")
	}
}
