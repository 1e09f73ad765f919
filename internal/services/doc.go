// Package services implements the outbound API calls of the champion upload flow.
//
// Each method is a single attempt: no retries, no backoff. Failures are reported with the
// sentinel errors from the shared package so the orchestrator can tell them apart with [errors.Is].
//
// # Data Dragon
//
// [DDragonService] talks to the public League of Legends CDN.
//   - ValidateChampion: GET {host}/cdn/{version}/data/en_US/champion/{name}.json
//   - DownloadImage: GET {host}/cdn/img/champion/loading/{name}_0.jpg
//
// # Dropbox
//
// [DropboxService] wraps an [oauth2.Config] for the authorization-code flow and uploads with the resulting token.
//   - AuthCodeURL: authorize endpoint with response_type=code and token_access_type=offline
//   - ExchangeCode: form POST to the token endpoint with client credentials in the body
//   - UploadImage: raw bytes to /2/files/upload with a Dropbox-API-Arg header
//
// # Error Handling
//
//   - [shared.ErrValidationFailed] : champion lookup answered with a non-2xx status
//   - [shared.ErrTransport] : network failure or non-2xx status on any other call
//   - [shared.ErrTokenParse] : token endpoint answered 2xx without a usable access_token
//   - [shared.ErrMissingCredentials] : client credentials or token absent
package services
