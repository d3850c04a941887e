// Package desk implements the IT service-desk conversation: the action
// catalogue and its handlers, the policy prompt, the per-conversation
// session, the dispatcher that runs model-selected actions behind the
// verify-first guard, the model adapter and the read-submit-print-persist
// loop.
//
// # Flow
//
//	User > reset my bitlocker, I'm John Doe
//	  Loop        appends the user Turn and calls Model.Submit
//	  GenxModel   sends the transcript and catalogue to the generator
//	  generator   asks for staff_id_verification{"user_name":"John Doe"}
//	  Dispatcher  runs the handler, marks the session verified (JD12345)
//	  generator   asks for bitlocker_recovery{"device_id":"PC1001",...}
//	  Dispatcher  checks the guard, runs the handler
//	  generator   answers in text
//	  Loop        prints "Assistant > ...", appends the Turn, persists
//
// # Verification guard
//
// Actions flagged RequiresVerifiedStaff are refused until an action flagged
// Verifies has returned a staff id, and whenever their staff_id argument
// differs from the verified id. Refusals are returned to the model as the
// action result and never reach the handler.
package desk
