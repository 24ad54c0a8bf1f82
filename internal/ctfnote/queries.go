package ctfnote

// GraphQL documents sent to the note service.
const (
	loginMutation = `mutation Login($login: String!, $password: String!) {
  login(input: {login: $login, password: $password}) { jwt }
}`

	registerMutation = `mutation Register($login: String!, $password: String!) {
  register(input: {login: $login, password: $password}) { jwt }
}`

	incomingCTFsQuery = `query IncomingCtfs {
  incomingCtf { nodes { id title startTime endTime } }
}`

	ctfTasksQuery = `query CtfTasks($ctfId: Int!) {
  ctf(id: $ctfId) { tasks { nodes { id title } } }
}`

	createTaskMutation = `mutation CreateTask($ctfId: Int!, $title: String!, $tags: [String], $description: String) {
  createTask(input: {ctfId: $ctfId, title: $title, tags: $tags, description: $description}) { task { id } }
}`

	updateFlagMutation = `mutation UpdateTaskFlag($id: Int!, $flag: String) {
  updateTask(input: {id: $id, patch: {flag: $flag}}) { task { id flag } }
}`

	profileByUsernameQuery = `query ProfileByUsername($username: String!) {
  profiles(condition: {username: $username}) { nodes { id } }
}`

	assignLeadMutation = `mutation AssignLead($taskId: Int!, $profileId: Int!) {
  createWorkOnTask(input: {workOnTask: {taskId: $taskId, profileId: $profileId}}) { clientMutationId }
}`

	taskLeadQuery = `query TaskLead($id: Int!) {
  task(id: $id) { workOnTasks { nodes { profile { username } } } }
}`

	importCTFMutation = `mutation ImportCtf($id: Int!) {
  importCtf(input: {ctftimeId: $id}) { ctf { id } }
}`
)
