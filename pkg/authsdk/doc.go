/*
Package authsdk is a Go client for the Tavern authentication service.

SDKClient covers the public endpoints: registration, activation, password
reset, login, refresh, federated callback, bootstrap and health. Logging in
returns a Session, which carries the token pair and refreshes the access
token shortly before it expires:

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.AuthenticateWithPassword(ctx, "alice", "s3cret!")
	if err != nil {
		return err
	}

	me, err := session.Me(ctx)

A refresh re-resolves the account's scopes, so role changes reach a
session without a new login. Session checks its granted scopes before
sending a request; set SDKClient.CheckScopes to false to leave the check to
the server.

Failed requests return an *APIError carrying the service's error code:

	if authsdk.IsCode(err, authsdk.ErrorCodeInactiveUser) {
		// ask for the activation code
	}
*/
package authsdk
