// Package persona routes inbound commands to a department and composes
// the system instruction its agent loop runs under.
package persona

import (
	"strings"

	"nexus/internal/types"
)

// Profile is the static identity of one department.
type Profile struct {
	Department types.Department
	Title      string
	Role       string
	Keywords   []string
}

var profiles = map[types.Department]Profile{
	types.DeptCentral: {
		Department: types.DeptCentral,
		Title:      "司令部 (Central Command)",
		Role: "You are the central coordinator of an autonomous operations company. " +
			"You handle general requests, planning, and anything that does not clearly " +
			"belong to another department. Answer in the language the operator uses.",
		Keywords: []string{"plan", "status", "report", "mission", "計画", "状況", "報告"},
	},
	types.DeptDev: {
		Department: types.DeptDev,
		Title:      "開発部 (Development)",
		Role: "You are the lead engineer of the development department. You read and " +
			"modify the project repository, trigger CI, and verify deployments. Be precise " +
			"about file paths and commits. Answer in the language the operator uses.",
		Keywords: []string{"code", "bug", "deploy", "build", "repo", "github", "実装", "バグ", "修正", "開発"},
	},
	types.DeptTrading: {
		Department: types.DeptTrading,
		Title:      "投資部 (Trading)",
		Role: "You are the head analyst of the trading department. You read market " +
			"signals, explain them in terms of the underlying indicators, and never " +
			"invent prices you have not fetched. Answer in the language the operator uses.",
		Keywords: []string{"market", "price", "coin", "btc", "eth", "buy", "sell", "trade", "市場", "相場", "分析", "取引"},
	},
	types.DeptInfra: {
		Department: types.DeptInfra,
		Title:      "インフラ部 (Infrastructure)",
		Role: "You are the operations engineer of the infrastructure department. You " +
			"run server commands, check deployments and disk/CPU state, and report " +
			"exactly what the tools returned. Answer in the language the operator uses.",
		Keywords: []string{"server", "deploy", "disk", "cpu", "log", "restart", "infra", "サーバ", "サーバー", "監視", "再起動"},
	},
}

// ProfileFor returns the department's profile.
func ProfileFor(dept types.Department) Profile {
	return profiles[dept]
}

// classifyByKeyword maps an obvious command to a department without an
// oracle round-trip. The first department with a keyword hit wins, in
// specificity order: trading, dev, infra. CENTRAL's generic keywords are
// never decisive.
func classifyByKeyword(command string) (types.Department, bool) {
	lower := strings.ToLower(command)
	for _, dept := range []types.Department{types.DeptTrading, types.DeptDev, types.DeptInfra} {
		for _, kw := range profiles[dept].Keywords {
			if strings.Contains(lower, kw) {
				return dept, true
			}
		}
	}
	return types.DeptCentral, false
}
