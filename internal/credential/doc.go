// Package credential resolves the UNDL API key.
//
// Four sources are consulted in order, first hit wins:
//  1. An explicit key (the --api-key flag).
//  2. The UNDL_API_KEY environment variable.
//  3. A .env file in the working directory, holding KEY=value lines.
//     This is the file CI deployments write the key into.
//  4. A keys.json file (JSONC, comments tolerated) holding an
//     "undl_api_key" entry, at an explicit path or under the user
//     config directory (~/.config/unlibmd/keys.json).
//
// The resolved key never appears in logs or error messages.
package credential
