package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"lesson:watch",
		"submission:create",
		"submission:view-own",
		"pathway:view",
		"pathway:advance",
		"pathway:choose",
		"user:change_password",
	},
	"mentor": {
		"course:view",
		"course:create",
		"content:manage",
		"submission:view-all",
		"submission:review",
		"pathway:view",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
