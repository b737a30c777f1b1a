// Package common holds helpers shared by several services.
//
// It provides the server client constructor driven by the saved settings
// and a progress reporter that logs transfer milestones.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
