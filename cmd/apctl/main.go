// Apctl is the operator CLI for the Asset Plane control plane.
//
// Usage:
//
//	# Ingest a device snapshot from an MDM export
//	apctl ingest --source mdm --type device --field serial_number=C02XK1AAJG5H
//
//	# Preview reconciliation candidates without writing
//	apctl candidates --type device --field serial_number=C02XK1AAJG5H
//
//	# Start and inspect workflow runs
//	apctl start-run --definition <id>
//	apctl run get <id>
//	apctl advance <run-id>
//
//	# Decide a pending approval
//	apctl decide <approval-id> --decision approved --comment "ticket verified"
package main

func main() {
	Execute()
}
