// Package bot is the Discord front end.
//
// [Actions] holds the command logic and returns [Reply] values that know nothing about
// Discord types, so it is tested without a gateway. [Bot] owns the disgo client: it
// registers [Commands], turns interactions into an [Invocation] with the member's role
// names, and renders replies as components V2 containers.
//
// Buttons carry their action in the custom ID:
//
//	queue:<refresh|prev|home|next|loop|shuffle|showmedia>:<page>
//	media:<refresh|prev|pause|next|showqueue>
//
// An empty role name in [shared.RolesConfig] lets everyone run the commands it guards.
package bot
