// Package osu holds the domain constants shared across the bot: privilege
// bits, game modes, mod flags, multiplayer slot and team enums. Values
// mirror what the chat server and the platform API put on the wire.
package osu

// Privileges is the bitmask of user capabilities carried on every sender
// descriptor. Commands may require specific bits.
type Privileges int64

const (
	PrivilegeUserPublic Privileges = 1 << iota
	PrivilegeUserNormal
	PrivilegeUserDonor
	PrivilegeAdminAccessRAP
	PrivilegeAdminManageUsers
	PrivilegeAdminBanUsers
	PrivilegeAdminSilenceUsers
	PrivilegeAdminWipeUsers
	PrivilegeAdminManageBeatmaps
	PrivilegeAdminManageServers
	PrivilegeAdminManageSettings
	PrivilegeAdminManageBetaKeys
	PrivilegeAdminManageReports
	PrivilegeAdminManageDocs
	PrivilegeAdminManageBadges
	PrivilegeAdminViewRAPLogs
	PrivilegeAdminManagePrivileges
	PrivilegeAdminSendAlerts
	PrivilegeAdminChatMod
	PrivilegeAdminKickUsers
	PrivilegeUserPendingVerification
	PrivilegeUserTournamentStaff
	PrivilegeAdminCaker
)

const (
	PrivilegeNone        Privileges = 0
	PrivilegeUserAllowed            = PrivilegeUserPublic | PrivilegeUserNormal
)

// Has reports whether every bit in required is present.
func (p Privileges) Has(required Privileges) bool {
	return p&required == required
}

// ClientType distinguishes the two client kinds the chat server reports.
type ClientType int

const (
	ClientTypeOsu ClientType = iota
	ClientTypeIRC
)
